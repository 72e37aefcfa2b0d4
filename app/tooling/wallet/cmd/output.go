package cmd

import (
	"encoding/json"
	"fmt"
	"log"
)

// printJSON writes the value as indented JSON to stdout.
func printJSON(v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(string(data))
}
