// Package agents holds the generation collaborators: the copywriter that
// drafts post copy and the image generator that produces media. Remote
// implementations drive agent runs over HTTP, answering the tool calls the
// agent issues mid-run; local fallbacks keep the pipeline producing
// deterministic output when no endpoint is configured.
package agents
