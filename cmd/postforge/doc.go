// Command postforge is the operator CLI for the content pipeline daemon:
// submit post plans, inspect run status, manage configuration.
package main
