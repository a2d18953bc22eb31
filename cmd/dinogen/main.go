// Package main is the entry point for dinogen.
//
//	@title			dinogen - JSON Schema builder
//	@version		1.0
//	@description	Edits field trees in sessions, compiles them to JSON Schema and submits them to a data generation service.
//
//	@license.name	MIT
//
//	@host			localhost:8080
//	@BasePath		/
package main

func main() {
	Execute()
}
