// Package commitmsg builds publish commit messages. Render
// fills "{{name}}" placeholders in a message template;
// Generate appends a trailer listing the published files
// between marker lines, and ExtractPaths reads it back from
// a commit message.
package commitmsg
