// Package swagger holds the OpenAPI document of the session API.
// Regenerate with: swag init -g cmd/dinogen/main.go -o docs/swagger
package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "license": {
            "name": "MIT"
        },
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/api/sessions": {
            "get": {
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "Sessions"
                ],
                "summary": "List sessions",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "type": "object",
                            "additionalProperties": {
                                "type": "array",
                                "items": {
                                    "type": "string"
                                }
                            }
                        }
                    }
                }
            },
            "post": {
                "consumes": [
                    "application/json"
                ],
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "Sessions"
                ],
                "summary": "Open session",
                "description": "Opens a session, optionally seeded with a JSON or YAML draft",
                "responses": {
                    "201": {
                        "description": "Created",
                        "schema": {
                            "$ref": "#/definitions/app.Snapshot"
                        }
                    },
                    "400": {
                        "description": "Error",
                        "schema": {
                            "$ref": "#/definitions/http.ErrorResponseBody"
                        }
                    },
                    "429": {
                        "description": "Error",
                        "schema": {
                            "$ref": "#/definitions/http.ErrorResponseBody"
                        }
                    }
                }
            }
        },
        "/api/sessions/{sid}": {
            "get": {
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "Sessions"
                ],
                "summary": "Get session",
                "parameters": [
                    {
                        "type": "string",
                        "description": "Session ID",
                        "name": "sid",
                        "in": "path",
                        "required": true
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/app.Snapshot"
                        }
                    },
                    "404": {
                        "description": "Error",
                        "schema": {
                            "$ref": "#/definitions/http.ErrorResponseBody"
                        }
                    }
                }
            },
            "delete": {
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "Sessions"
                ],
                "summary": "Close session",
                "parameters": [
                    {
                        "type": "string",
                        "description": "Session ID",
                        "name": "sid",
                        "in": "path",
                        "required": true
                    }
                ],
                "responses": {
                    "204": {
                        "description": "No Content"
                    },
                    "404": {
                        "description": "Error",
                        "schema": {
                            "$ref": "#/definitions/http.ErrorResponseBody"
                        }
                    }
                }
            }
        },
        "/api/sessions/{sid}/data-types": {
            "get": {
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "Sessions"
                ],
                "summary": "List data types",
                "parameters": [
                    {
                        "type": "string",
                        "description": "Session ID",
                        "name": "sid",
                        "in": "path",
                        "required": true
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "type": "object",
                            "additionalProperties": {
                                "type": "array",
                                "items": {
                                    "$ref": "#/definitions/datatype.DataType"
                                }
                            }
                        }
                    }
                }
            }
        },
        "/api/sessions/{sid}/draft": {
            "get": {
                "produces": [
                    "application/json",
                    "application/yaml"
                ],
                "tags": [
                    "Sessions"
                ],
                "summary": "Export draft",
                "parameters": [
                    {
                        "type": "string",
                        "description": "Session ID",
                        "name": "sid",
                        "in": "path",
                        "required": true
                    },
                    {
                        "type": "string",
                        "description": "json or yaml",
                        "name": "format",
                        "in": "query",
                        "required": false
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/draft.Draft"
                        }
                    }
                }
            }
        },
        "/api/sessions/{sid}/fields": {
            "post": {
                "consumes": [
                    "application/json"
                ],
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "Fields"
                ],
                "summary": "Add field",
                "parameters": [
                    {
                        "type": "string",
                        "description": "Session ID",
                        "name": "sid",
                        "in": "path",
                        "required": true
                    },
                    {
                        "description": "Optional parent",
                        "name": "body",
                        "in": "body",
                        "required": false,
                        "schema": {
                            "$ref": "#/definitions/http.AddData"
                        }
                    }
                ],
                "responses": {
                    "201": {
                        "description": "Created",
                        "schema": {
                            "$ref": "#/definitions/http.AddedResponse"
                        }
                    },
                    "404": {
                        "description": "Error",
                        "schema": {
                            "$ref": "#/definitions/http.ErrorResponseBody"
                        }
                    }
                }
            }
        },
        "/api/sessions/{sid}/fields/order": {
            "put": {
                "consumes": [
                    "application/json"
                ],
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "Fields"
                ],
                "summary": "Reorder root fields",
                "parameters": [
                    {
                        "type": "string",
                        "description": "Session ID",
                        "name": "sid",
                        "in": "path",
                        "required": true
                    },
                    {
                        "description": "Root field ids in the new order",
                        "name": "body",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/http.OrderData"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/http.FieldsResponse"
                        }
                    },
                    "400": {
                        "description": "Error",
                        "schema": {
                            "$ref": "#/definitions/http.ErrorResponseBody"
                        }
                    }
                }
            }
        },
        "/api/sessions/{sid}/fields/{fid}": {
            "delete": {
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "Fields"
                ],
                "summary": "Remove field",
                "parameters": [
                    {
                        "type": "string",
                        "description": "Session ID",
                        "name": "sid",
                        "in": "path",
                        "required": true
                    },
                    {
                        "type": "string",
                        "description": "Field ID",
                        "name": "fid",
                        "in": "path",
                        "required": true
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/http.FieldsResponse"
                        }
                    },
                    "404": {
                        "description": "Error",
                        "schema": {
                            "$ref": "#/definitions/http.ErrorResponseBody"
                        }
                    }
                }
            },
            "patch": {
                "consumes": [
                    "application/json"
                ],
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "Fields"
                ],
                "summary": "Update field",
                "parameters": [
                    {
                        "type": "string",
                        "description": "Session ID",
                        "name": "sid",
                        "in": "path",
                        "required": true
                    },
                    {
                        "type": "string",
                        "description": "Field ID",
                        "name": "fid",
                        "in": "path",
                        "required": true
                    },
                    {
                        "description": "Key and value",
                        "name": "body",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/http.UpdateData"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/http.FieldsResponse"
                        }
                    },
                    "400": {
                        "description": "Error",
                        "schema": {
                            "$ref": "#/definitions/http.ErrorResponseBody"
                        }
                    },
                    "404": {
                        "description": "Error",
                        "schema": {
                            "$ref": "#/definitions/http.ErrorResponseBody"
                        }
                    }
                }
            }
        },
        "/api/sessions/{sid}/fields/{fid}/attributes/{name}": {
            "put": {
                "consumes": [
                    "application/json"
                ],
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "Fields"
                ],
                "summary": "Set attribute",
                "parameters": [
                    {
                        "type": "string",
                        "description": "Session ID",
                        "name": "sid",
                        "in": "path",
                        "required": true
                    },
                    {
                        "type": "string",
                        "description": "Field ID",
                        "name": "fid",
                        "in": "path",
                        "required": true
                    },
                    {
                        "type": "string",
                        "description": "Attribute name",
                        "name": "name",
                        "in": "path",
                        "required": true
                    },
                    {
                        "description": "Attribute value",
                        "name": "body",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/http.AttributeData"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/http.FieldsResponse"
                        }
                    },
                    "404": {
                        "description": "Error",
                        "schema": {
                            "$ref": "#/definitions/http.ErrorResponseBody"
                        }
                    }
                }
            },
            "delete": {
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "Fields"
                ],
                "summary": "Delete attribute",
                "parameters": [
                    {
                        "type": "string",
                        "description": "Session ID",
                        "name": "sid",
                        "in": "path",
                        "required": true
                    },
                    {
                        "type": "string",
                        "description": "Field ID",
                        "name": "fid",
                        "in": "path",
                        "required": true
                    },
                    {
                        "type": "string",
                        "description": "Attribute name",
                        "name": "name",
                        "in": "path",
                        "required": true
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/http.FieldsResponse"
                        }
                    },
                    "404": {
                        "description": "Error",
                        "schema": {
                            "$ref": "#/definitions/http.ErrorResponseBody"
                        }
                    }
                }
            }
        },
        "/api/sessions/{sid}/fields/{fid}/items": {
            "post": {
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "Fields"
                ],
                "summary": "Add items definition",
                "parameters": [
                    {
                        "type": "string",
                        "description": "Session ID",
                        "name": "sid",
                        "in": "path",
                        "required": true
                    },
                    {
                        "type": "string",
                        "description": "Field ID",
                        "name": "fid",
                        "in": "path",
                        "required": true
                    }
                ],
                "responses": {
                    "201": {
                        "description": "Created",
                        "schema": {
                            "$ref": "#/definitions/http.AddedResponse"
                        }
                    },
                    "404": {
                        "description": "Error",
                        "schema": {
                            "$ref": "#/definitions/http.ErrorResponseBody"
                        }
                    }
                }
            }
        },
        "/api/sessions/{sid}/fields/{fid}/move": {
            "post": {
                "consumes": [
                    "application/json"
                ],
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "Fields"
                ],
                "summary": "Move field",
                "parameters": [
                    {
                        "type": "string",
                        "description": "Session ID",
                        "name": "sid",
                        "in": "path",
                        "required": true
                    },
                    {
                        "type": "string",
                        "description": "Field ID",
                        "name": "fid",
                        "in": "path",
                        "required": true
                    },
                    {
                        "description": "Target index",
                        "name": "body",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/http.MoveData"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/http.FieldsResponse"
                        }
                    },
                    "404": {
                        "description": "Error",
                        "schema": {
                            "$ref": "#/definitions/http.ErrorResponseBody"
                        }
                    }
                }
            }
        },
        "/api/sessions/{sid}/meta": {
            "put": {
                "consumes": [
                    "application/json"
                ],
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "Sessions"
                ],
                "summary": "Set schema header",
                "parameters": [
                    {
                        "type": "string",
                        "description": "Session ID",
                        "name": "sid",
                        "in": "path",
                        "required": true
                    },
                    {
                        "description": "Title, description and sample count",
                        "name": "body",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/app.Meta"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/app.Meta"
                        }
                    },
                    "400": {
                        "description": "Error",
                        "schema": {
                            "$ref": "#/definitions/http.ErrorResponseBody"
                        }
                    }
                }
            }
        },
        "/api/sessions/{sid}/schema": {
            "get": {
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "Generation"
                ],
                "summary": "Compiled schema",
                "parameters": [
                    {
                        "type": "string",
                        "description": "Session ID",
                        "name": "sid",
                        "in": "path",
                        "required": true
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "type": "object",
                            "additionalProperties": true
                        },
                        "headers": {
                            "X-Catalog-Misses": {
                                "type": "integer",
                                "description": "Data types missing from the catalog"
                            }
                        }
                    }
                }
            }
        },
        "/api/sessions/{sid}/submissions": {
            "get": {
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "Generation"
                ],
                "summary": "List submissions",
                "parameters": [
                    {
                        "type": "string",
                        "description": "Session ID",
                        "name": "sid",
                        "in": "path",
                        "required": true
                    },
                    {
                        "type": "integer",
                        "description": "Maximum rows",
                        "name": "limit",
                        "in": "query",
                        "required": false,
                        "default": 50
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "type": "object",
                            "additionalProperties": {
                                "type": "array",
                                "items": {
                                    "$ref": "#/definitions/ports.Submission"
                                }
                            }
                        }
                    }
                }
            }
        },
        "/api/sessions/{sid}/submissions/{subid}": {
            "get": {
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "Generation"
                ],
                "summary": "Get submission",
                "parameters": [
                    {
                        "type": "string",
                        "description": "Session ID",
                        "name": "sid",
                        "in": "path",
                        "required": true
                    },
                    {
                        "type": "string",
                        "description": "Submission ID",
                        "name": "subid",
                        "in": "path",
                        "required": true
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ports.Submission"
                        }
                    },
                    "404": {
                        "description": "Error",
                        "schema": {
                            "$ref": "#/definitions/http.ErrorResponseBody"
                        }
                    }
                }
            }
        },
        "/api/sessions/{sid}/submit": {
            "post": {
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "Generation"
                ],
                "summary": "Submit for generation",
                "parameters": [
                    {
                        "type": "string",
                        "description": "Session ID",
                        "name": "sid",
                        "in": "path",
                        "required": true
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/app.SubmitResult"
                        }
                    },
                    "422": {
                        "description": "Unprocessable Entity",
                        "schema": {
                            "$ref": "#/definitions/http.ViolationsResponse"
                        }
                    },
                    "502": {
                        "description": "Generation failed, submission recorded",
                        "schema": {
                            "type": "object",
                            "additionalProperties": true
                        }
                    }
                }
            }
        },
        "/api/sessions/{sid}/validate": {
            "post": {
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "Generation"
                ],
                "summary": "Validate fields",
                "parameters": [
                    {
                        "type": "string",
                        "description": "Session ID",
                        "name": "sid",
                        "in": "path",
                        "required": true
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/http.ValidateResponse"
                        }
                    }
                }
            }
        }
    },
    "definitions": {
        "app.Meta": {
            "type": "object",
            "properties": {
                "description": {
                    "type": "string"
                },
                "num_samples": {
                    "type": "integer"
                },
                "title": {
                    "type": "string"
                }
            }
        },
        "app.Result": {
            "type": "object",
            "properties": {
                "response": {},
                "seq": {
                    "type": "integer"
                },
                "submission_id": {
                    "type": "string"
                }
            }
        },
        "app.Snapshot": {
            "type": "object",
            "properties": {
                "created_at": {
                    "type": "string"
                },
                "data_types": {
                    "type": "integer"
                },
                "fields": {
                    "type": "array",
                    "items": {
                        "$ref": "#/definitions/field.Node"
                    }
                },
                "format": {
                    "type": "string"
                },
                "id": {
                    "type": "string"
                },
                "meta": {
                    "$ref": "#/definitions/app.Meta"
                },
                "result": {
                    "$ref": "#/definitions/app.Result"
                }
            }
        },
        "app.SubmitResult": {
            "type": "object",
            "properties": {
                "report": {
                    "$ref": "#/definitions/schemadoc.Report"
                },
                "submission": {
                    "$ref": "#/definitions/ports.Submission"
                },
                "superseded": {
                    "type": "boolean"
                }
            }
        },
        "datatype.DataType": {
            "type": "object",
            "properties": {
                "format": {
                    "type": "string"
                },
                "type": {
                    "type": "string"
                },
                "value": {
                    "type": "string"
                }
            }
        },
        "draft.Draft": {
            "type": "object",
            "properties": {
                "description": {
                    "type": "string"
                },
                "fields": {
                    "type": "array",
                    "items": {
                        "$ref": "#/definitions/field.Node"
                    }
                },
                "format": {
                    "type": "string"
                },
                "num_samples": {
                    "type": "integer"
                },
                "title": {
                    "type": "string"
                }
            }
        },
        "field.Node": {
            "type": "object",
            "properties": {
                "attributes": {
                    "type": "object",
                    "additionalProperties": {
                        "type": "string"
                    }
                },
                "dataType": {
                    "type": "string"
                },
                "description": {
                    "type": "string"
                },
                "id": {
                    "type": "string"
                },
                "items": {
                    "$ref": "#/definitions/field.Node"
                },
                "keyTitle": {
                    "type": "string"
                },
                "properties": {
                    "type": "array",
                    "items": {
                        "$ref": "#/definitions/field.Node"
                    }
                }
            }
        },
        "http.AddData": {
            "type": "object",
            "properties": {
                "parent_id": {
                    "type": "string"
                }
            }
        },
        "http.AddedResponse": {
            "type": "object",
            "properties": {
                "fields": {
                    "type": "array",
                    "items": {
                        "$ref": "#/definitions/field.Node"
                    }
                },
                "id": {
                    "type": "string"
                }
            }
        },
        "http.AttributeData": {
            "type": "object",
            "properties": {
                "value": {
                    "type": "string"
                }
            }
        },
        "http.ErrorDetail": {
            "type": "object",
            "properties": {
                "code": {
                    "type": "string"
                },
                "message": {
                    "type": "string"
                }
            }
        },
        "http.ErrorResponseBody": {
            "type": "object",
            "properties": {
                "error": {
                    "$ref": "#/definitions/http.ErrorDetail"
                }
            }
        },
        "http.FieldsResponse": {
            "type": "object",
            "properties": {
                "fields": {
                    "type": "array",
                    "items": {
                        "$ref": "#/definitions/field.Node"
                    }
                }
            }
        },
        "http.MoveData": {
            "type": "object",
            "properties": {
                "index": {
                    "type": "integer"
                }
            }
        },
        "http.OrderData": {
            "type": "object",
            "properties": {
                "ids": {
                    "type": "array",
                    "items": {
                        "type": "string"
                    }
                }
            }
        },
        "http.UpdateData": {
            "type": "object",
            "properties": {
                "key": {
                    "type": "string"
                },
                "value": {}
            }
        },
        "http.ValidateResponse": {
            "type": "object",
            "properties": {
                "errors": {
                    "type": "array",
                    "items": {
                        "$ref": "#/definitions/validation.Violation"
                    }
                },
                "valid": {
                    "type": "boolean"
                }
            }
        },
        "http.ViolationsResponse": {
            "type": "object",
            "properties": {
                "error": {
                    "$ref": "#/definitions/http.ErrorDetail"
                },
                "violations": {
                    "type": "array",
                    "items": {
                        "$ref": "#/definitions/validation.Violation"
                    }
                }
            }
        },
        "ports.Submission": {
            "type": "object",
            "properties": {
                "completed_at": {
                    "type": "string"
                },
                "created_at": {
                    "type": "string"
                },
                "error": {
                    "type": "string"
                },
                "id": {
                    "type": "string"
                },
                "num_samples": {
                    "type": "integer"
                },
                "request": {},
                "response": {},
                "seq": {
                    "type": "integer"
                },
                "session_id": {
                    "type": "string"
                },
                "status": {
                    "type": "string"
                },
                "title": {
                    "type": "string"
                }
            }
        },
        "schemadoc.AttributeIssue": {
            "type": "object",
            "properties": {
                "name": {
                    "type": "string"
                },
                "path": {
                    "type": "string"
                },
                "value": {
                    "type": "string"
                }
            }
        },
        "schemadoc.Miss": {
            "type": "object",
            "properties": {
                "data_type": {
                    "type": "string"
                },
                "path": {
                    "type": "string"
                }
            }
        },
        "schemadoc.Report": {
            "type": "object",
            "properties": {
                "attribute_issues": {
                    "type": "array",
                    "items": {
                        "$ref": "#/definitions/schemadoc.AttributeIssue"
                    }
                },
                "misses": {
                    "type": "array",
                    "items": {
                        "$ref": "#/definitions/schemadoc.Miss"
                    }
                }
            }
        },
        "validation.Violation": {
            "type": "object",
            "properties": {
                "code": {
                    "type": "string"
                },
                "message": {
                    "type": "string"
                },
                "path": {
                    "type": "string"
                }
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "localhost:8080",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "dinogen - JSON Schema builder",
	Description:      "Edits field trees in sessions, compiles them to JSON Schema and submits them to a data generation service.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
