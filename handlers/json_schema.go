package handlers

import "github.com/xeipuuv/gojsonschema"

const ComposeRequestSchemaDefinition = `{
	"type": "object",
	"properties": {
		"callback_url": {"type": "string", "format": "uri"}
	},
	"additionalProperties": false
}`

var inputSchemas map[string]string = map[string]string{
	"Compose": ComposeRequestSchemaDefinition,
}

func compileJsonSchemas() map[string]*gojsonschema.Schema {
	compiled := make(map[string]*gojsonschema.Schema, 0)
	for name, text := range inputSchemas {
		schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(text))
		if err != nil {
			// rase panic on program start
			panic(err) // fix schema text
		}
		compiled[name] = schema
	}
	return compiled
}

// Run compile step on program start:
var inputSchemasCompiled map[string]*gojsonschema.Schema = compileJsonSchemas()
