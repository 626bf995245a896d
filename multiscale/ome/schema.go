package ome

import "github.com/santhosh-tekuri/jsonschema/v5"

// multiscalesSchema captures the structural requirements of the OME-NGFF
// "multiscales" attribute: at least one multiscale entry, each with a named
// axis list and at least one dataset carrying coordinate transformations.
// Numeric cross-checks (one transform entry per axis, exactly one scale) go
// beyond what JSON Schema expresses cleanly and are enforced in code.
const multiscalesSchema = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "object",
	"required": ["multiscales"],
	"properties": {
		"multiscales": {
			"type": "array",
			"minItems": 1,
			"items": {
				"type": "object",
				"required": ["axes", "datasets"],
				"properties": {
					"name": {"type": "string"},
					"version": {"type": "string"},
					"axes": {
						"type": "array",
						"minItems": 1,
						"items": {
							"type": "object",
							"required": ["name"],
							"properties": {
								"name": {"type": "string"},
								"type": {"type": "string"},
								"unit": {"type": "string"}
							}
						}
					},
					"datasets": {
						"type": "array",
						"minItems": 1,
						"items": {
							"type": "object",
							"required": ["path", "coordinateTransformations"],
							"properties": {
								"path": {"type": "string"},
								"coordinateTransformations": {
									"type": "array",
									"minItems": 1,
									"items": {
										"type": "object",
										"required": ["type"],
										"properties": {
											"type": {"type": "string"},
											"scale": {
												"type": "array",
												"items": {"type": "number", "exclusiveMinimum": 0}
											},
											"translation": {
												"type": "array",
												"items": {"type": "number"}
											}
										}
									}
								}
							}
						}
					},
					"coordinateTransformations": {
						"type": "array",
						"items": {
							"type": "object",
							"required": ["type"]
						}
					}
				}
			}
		}
	}
}`

var compiledSchema = jsonschema.MustCompileString("multiscales.json", multiscalesSchema)
