// Command livepen runs the playground server and offers one-shot tools
// around the same workspace.
//
//	livepen serve [--host H] [--port P] [--engine sandbox|chrome]
//	livepen render <dir> [--console] [--source]
//	livepen import <dir>
//	livepen export <file.zip>
package main
