// Package mediastore persists generated media. Local disk for development,
// Azure Blob Storage for shared deployments; either way Put returns the URL
// the published post references.
package mediastore
