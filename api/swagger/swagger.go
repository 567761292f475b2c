package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Student ID Card API",
        "description": "Student records with printable two-page ID cards",
        "version": "1.0.0"
    },
    "basePath": "/",
    "schemes": [
        "http"
    ],
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "tags": [
        {"name": "Authentication", "description": "Operator login"},
        {"name": "Students", "description": "Student record management"},
        {"name": "Cards", "description": "ID card rendering and delivery"},
        {"name": "Transfer", "description": "Spreadsheet import and export"}
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
                    "503": {"description": "Student store unavailable", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/metrics": {
            "get": {
                "summary": "Prometheus metrics",
                "produces": ["text/plain"],
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/api/v1/auth/login": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Authenticate operator",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/LoginRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Invalid credentials", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/auth/me": {
            "get": {
                "tags": ["Authentication"],
                "summary": "Current operator",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/auth/refresh": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Re-issue the access token",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/students": {
            "get": {
                "tags": ["Students"],
                "summary": "List students",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "name", "in": "query", "type": "string"},
                    {"name": "class", "in": "query", "type": "string"},
                    {"name": "roll", "in": "query", "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "limit", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Students"],
                "summary": "Create student and render the ID card",
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json", "multipart/form-data"],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateStudentRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Duplicate roll number", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "422": {"description": "Malformed date", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/students/{id}": {
            "get": {
                "tags": ["Students"],
                "summary": "Get student",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "put": {
                "tags": ["Students"],
                "summary": "Update student and re-render the ID card",
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json", "multipart/form-data"],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "integer"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/UpdateStudentRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Duplicate roll number", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "delete": {
                "tags": ["Students"],
                "summary": "Delete student and card",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/students/bulk-delete": {
            "post": {
                "tags": ["Students"],
                "summary": "Delete several students",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/SelectionRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/students/{id}/card": {
            "get": {
                "tags": ["Cards"],
                "summary": "Download a student's ID card",
                "security": [{"BearerAuth": []}],
                "produces": ["application/pdf"],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "PDF document"},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "422": {"description": "Malformed date", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Cards"],
                "summary": "Re-render a student's ID card",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/students/{id}/card/link": {
            "get": {
                "tags": ["Cards"],
                "summary": "Issue a signed card download link",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/downloads/{token}": {
            "get": {
                "tags": ["Cards"],
                "summary": "Download a card through a signed link",
                "produces": ["application/pdf"],
                "parameters": [
                    {"name": "token", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "PDF document"},
                    "401": {"description": "Invalid or expired link", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/cards/regenerate": {
            "post": {
                "tags": ["Cards"],
                "summary": "Re-render several cards; an empty list re-renders all",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": false, "schema": {"$ref": "#/definitions/SelectionRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/cards/bundle": {
            "post": {
                "tags": ["Cards"],
                "summary": "Download selected cards as a ZIP archive",
                "security": [{"BearerAuth": []}],
                "produces": ["application/zip"],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/SelectionRequest"}}
                ],
                "responses": {
                    "200": {"description": "ZIP archive"},
                    "400": {"description": "No students selected", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/students/export": {
            "get": {
                "tags": ["Transfer"],
                "summary": "Export students to a spreadsheet",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "format", "in": "query", "type": "string", "enum": ["csv", "xlsx"], "default": "xlsx"}
                ],
                "responses": {
                    "200": {"description": "Spreadsheet file"}
                }
            }
        },
        "/api/v1/students/import": {
            "post": {
                "tags": ["Transfer"],
                "summary": "Import students from a spreadsheet",
                "security": [{"BearerAuth": []}],
                "consumes": ["multipart/form-data"],
                "parameters": [
                    {"name": "file", "in": "formData", "required": true, "type": "file"},
                    {"name": "mode", "in": "formData", "type": "string", "enum": ["add", "replace", "upsert"], "default": "add"},
                    {"name": "format", "in": "formData", "type": "string", "enum": ["csv", "xlsx"]}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Invalid file", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/stats": {
            "get": {
                "tags": ["Students"],
                "summary": "Student statistics",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "LoginRequest": {
            "type": "object",
            "required": ["username", "password"],
            "properties": {
                "username": {"type": "string"},
                "password": {"type": "string"}
            }
        },
        "CreateStudentRequest": {
            "type": "object",
            "required": ["name", "roll_no", "date_of_birth", "date_of_issue", "date_of_expiry"],
            "properties": {
                "name": {"type": "string"},
                "father_name": {"type": "string"},
                "roll_no": {"type": "string"},
                "class": {"type": "string"},
                "phone": {"type": "string"},
                "gr_number": {"type": "string"},
                "date_of_birth": {"type": "string", "format": "date"},
                "date_of_issue": {"type": "string", "format": "date"},
                "date_of_expiry": {"type": "string", "format": "date"}
            }
        },
        "UpdateStudentRequest": {
            "type": "object",
            "properties": {
                "name": {"type": "string"},
                "father_name": {"type": "string"},
                "roll_no": {"type": "string"},
                "class": {"type": "string"},
                "phone": {"type": "string"},
                "gr_number": {"type": "string"},
                "date_of_birth": {"type": "string", "format": "date"},
                "date_of_issue": {"type": "string", "format": "date"},
                "date_of_expiry": {"type": "string", "format": "date"},
                "remove_photo": {"type": "boolean"}
            }
        },
        "SelectionRequest": {
            "type": "object",
            "properties": {
                "ids": {"type": "array", "items": {"type": "integer"}}
            }
        },
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "page_size": {"type": "integer"},
                "total_count": {"type": "integer"}
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
                "pagination": {"$ref": "#/definitions/Pagination"},
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
