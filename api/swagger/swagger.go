package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Data Portal API",
        "description": "Catalog of atmospheric remote-sensing product files and their best versions",
        "version": "1.0.0"
    },
    "basePath": "/",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Files", "description": "Best-version resolution and file lookup"},
        {"name": "Submissions", "description": "Write path used by the processing pipeline"},
        {"name": "Reference", "description": "Sites, products and model types"},
        {"name": "Index", "description": "Best-version index maintenance"}
    ],
    "paths": {
        "/health": {
            "get": {
                "summary": "Health check",
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/ready": {
            "get": {
                "summary": "Readiness check",
                "responses": {
                    "200": {"description": "Ready"},
                    "503": {"description": "Database unreachable"}
                }
            }
        },
        "/api/files": {
            "get": {
                "tags": ["Files"],
                "summary": "List best files",
                "parameters": [
                    {"name": "site", "in": "query", "type": "array", "items": {"type": "string"}, "collectionFormat": "multi"},
                    {"name": "product", "in": "query", "type": "array", "items": {"type": "string"}, "collectionFormat": "multi"},
                    {"name": "model", "in": "query", "type": "array", "items": {"type": "string"}, "collectionFormat": "multi"},
                    {"name": "dateFrom", "in": "query", "type": "string", "format": "date"},
                    {"name": "dateTo", "in": "query", "type": "string", "format": "date"},
                    {"name": "date", "in": "query", "type": "string", "format": "date"},
                    {"name": "releasedBefore", "in": "query", "type": "string"},
                    {"name": "allVersions", "in": "query", "type": "boolean"},
                    {"name": "allModels", "in": "query", "type": "boolean"},
                    {"name": "showLegacy", "in": "query", "type": "boolean"},
                    {"name": "includeVolatile", "in": "query", "type": "boolean"},
                    {"name": "limit", "in": "query", "type": "integer"},
                    {"name": "format", "in": "query", "type": "string", "enum": ["json", "csv"]}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/FileListEnvelope"}},
                    "400": {"description": "Invalid query", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "No file matches", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/search": {
            "get": {
                "tags": ["Files"],
                "summary": "List current best versions from the index",
                "parameters": [
                    {"name": "site", "in": "query", "type": "array", "items": {"type": "string"}, "collectionFormat": "multi"},
                    {"name": "product", "in": "query", "type": "array", "items": {"type": "string"}, "collectionFormat": "multi"},
                    {"name": "dateFrom", "in": "query", "type": "string", "format": "date"},
                    {"name": "dateTo", "in": "query", "type": "string", "format": "date"},
                    {"name": "includeVolatile", "in": "query", "type": "boolean"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/FileListEnvelope"}},
                    "404": {"description": "No file matches", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/files/{uuid}": {
            "get": {
                "tags": ["Files"],
                "summary": "Get file by uuid",
                "parameters": [
                    {"name": "uuid", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/download/{uuid}": {
            "get": {
                "tags": ["Files"],
                "summary": "Download file content through a signed link",
                "produces": ["application/octet-stream"],
                "parameters": [
                    {"name": "uuid", "in": "path", "required": true, "type": "string"},
                    {"name": "expires", "in": "query", "required": true, "type": "string"},
                    {"name": "token", "in": "query", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "File content"},
                    "403": {"description": "Invalid or expired link", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/sites": {
            "get": {"tags": ["Reference"], "summary": "List sites", "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}}
        },
        "/api/products": {
            "get": {"tags": ["Reference"], "summary": "List products", "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}}
        },
        "/api/models": {
            "get": {"tags": ["Reference"], "summary": "List model types by optimum order", "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}}
        },
        "/api/status": {
            "get": {"summary": "Service status snapshot", "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}}
        },
        "/files/{uuid}": {
            "put": {
                "tags": ["Submissions"],
                "summary": "Submit a file revision",
                "parameters": [
                    {"name": "uuid", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/SubmitFileRequest"}}
                ],
                "responses": {
                    "200": {"description": "Updated", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Validation error or object missing from storage", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "403": {"description": "Frozen file", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Duplicate checksum", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "503": {"description": "Storage unavailable", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Submissions"],
                "summary": "Amend pid, legacy or volatility of a file",
                "parameters": [
                    {"name": "uuid", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/AmendFileRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/model-files": {
            "post": {
                "tags": ["Submissions"],
                "summary": "Submit a model file",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ModelFileRequest"}}
                ],
                "responses": {
                    "200": {"description": "Updated", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "403": {"description": "Frozen file", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/admin/index/rebuild": {
            "post": {
                "tags": ["Index"],
                "summary": "Rebuild the best-version index",
                "parameters": [
                    {"name": "payload", "in": "body", "required": false, "schema": {"$ref": "#/definitions/IndexRebuildRequest"}}
                ],
                "responses": {
                    "200": {"description": "Rebuilt", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "202": {"description": "Queued", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/admin/index/verify": {
            "get": {
                "tags": ["Index"],
                "summary": "Compare the index with a fresh resolution",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "File": {
            "type": "object",
            "properties": {
                "uuid": {"type": "string"},
                "checksum": {"type": "string"},
                "filename": {"type": "string"},
                "s3key": {"type": "string"},
                "site": {"type": "string"},
                "product": {"type": "string"},
                "model": {"type": "string"},
                "optimumOrder": {"type": "integer"},
                "measurementDate": {"type": "string", "format": "date"},
                "format": {"type": "string"},
                "size": {"type": "integer"},
                "volatile": {"type": "boolean"},
                "legacy": {"type": "boolean"},
                "pid": {"type": "string"},
                "supersededBy": {"type": "string"},
                "sourceFileIds": {"type": "array", "items": {"type": "string"}},
                "createdAt": {"type": "string"},
                "updatedAt": {"type": "string"},
                "releasedAt": {"type": "string"},
                "downloadUrl": {"type": "string"}
            }
        },
        "SubmitFileRequest": {
            "type": "object",
            "required": ["checksum", "filename", "s3key", "site", "product", "measurementDate", "format"],
            "properties": {
                "uuid": {"type": "string"},
                "checksum": {"type": "string"},
                "filename": {"type": "string"},
                "s3key": {"type": "string"},
                "site": {"type": "string"},
                "product": {"type": "string"},
                "model": {"type": "string"},
                "measurementDate": {"type": "string", "format": "date"},
                "format": {"type": "string"},
                "size": {"type": "integer"},
                "volatile": {"type": "boolean"},
                "legacy": {"type": "boolean"},
                "sourceFileIds": {"type": "array", "items": {"type": "string"}}
            }
        },
        "AmendFileRequest": {
            "type": "object",
            "properties": {
                "pid": {"type": "string"},
                "legacy": {"type": "boolean"},
                "volatile": {"type": "boolean"}
            }
        },
        "ModelFileRequest": {
            "type": "object",
            "required": ["year", "month", "day", "hashSum", "filename", "modelType", "location", "file_uuid", "format"],
            "properties": {
                "year": {"type": "string"},
                "month": {"type": "string"},
                "day": {"type": "string"},
                "hashSum": {"type": "string"},
                "filename": {"type": "string"},
                "modelType": {"type": "string"},
                "location": {"type": "string"},
                "file_uuid": {"type": "string"},
                "format": {"type": "string"},
                "size": {"type": "integer"},
                "volatile": {"type": "boolean"}
            }
        },
        "IndexRebuildRequest": {
            "type": "object",
            "properties": {
                "site": {"type": "array", "items": {"type": "string"}},
                "product": {"type": "array", "items": {"type": "string"}},
                "dateFrom": {"type": "string", "format": "date"},
                "dateTo": {"type": "string", "format": "date"},
                "async": {"type": "boolean"}
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"}
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
                "meta": {"type": "object"}
            }
        },
        "FileListEnvelope": {
            "type": "object",
            "properties": {
                "data": {"type": "array", "items": {"$ref": "#/definitions/File"}},
                "error": {"$ref": "#/definitions/APIError"},
                "meta": {"type": "object"}
            }
        }
    }
}`

type swaggerDoc struct{}

// ReadDoc returns the Swagger document.
func (s *swaggerDoc) ReadDoc() string {
	return docTemplate
}

func init() {
	swag.Register(swag.Name, &swaggerDoc{})
}
