// Command uniconvert runs conversions and polyglot merges on local files
// without the HTTP server.
//
// Usage:
//
//	uniconvert <command> [arguments]
//
// Commands:
//
//	convert <input> <target-ext> [output|-] [pages]
//	        Convert input to the target format. Without an output the
//	        result is written next to the input under the input's name
//	        with the new extension; an existing file is never overwritten
//	        implicitly. Documents converted to an image format produce one
//	        image for a single page, or a zip of page-NNN images.
//
//	merge <output> <input> <input>...
//	        Build a polyglot file from at least two inputs. The base is
//	        picked from the inputs the same way the server does.
//
//	formats [ext]
//	        List the known formats, or describe one and its targets.
//
//	backends
//	        Report which conversion backends are available on this host.
//
// Work happens in a temporary artifact store that is removed on exit; the
// inputs are only read. Binary output is never written to a terminal.
//
// Environment:
//
//	LOG_LEVEL - debug, info, warn, error (default: warn)
package main
