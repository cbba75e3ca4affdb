// Package protocol implements the lint server wire exchange.
//
// A request is framed as the file path, the decimal byte length of the
// content, and the content itself, separated by newlines:
//
//	<path>\n<len(content)>\n<content>
//
// The server answers with diagnostic lines and ends the response with a
// blank line. A response consisting of a single newline means "no
// diagnostics". Every exchange uses its own TCP connection.
package protocol
