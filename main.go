// harvester crawls configured sources and dispatches everything it
// discovers to the document ingestion pipeline.
package main

import "github.com/harvester-hq/harvester/cmd"

func main() {
	cmd.Execute()
}
