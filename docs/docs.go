// Package docs holds the OpenAPI description served under /swagger.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/health": {
            "get": {
                "produces": ["application/json"],
                "tags": ["system"],
                "summary": "Health check",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/payments/create": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["payments"],
                "summary": "Create a PIX payment",
                "parameters": [
                    {
                        "description": "Payment request",
                        "name": "request",
                        "in": "body",
                        "required": true,
                        "schema": {"$ref": "#/definitions/server.createPaymentRequest"}
                    }
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object", "additionalProperties": {"$ref": "#/definitions/server.paymentDTO"}}},
                    "400": {"description": "Bad Request"},
                    "500": {"description": "Internal Server Error"}
                }
            }
        },
        "/payments/status": {
            "get": {
                "produces": ["application/json"],
                "tags": ["payments"],
                "summary": "Check a PIX payment",
                "parameters": [
                    {"type": "string", "description": "Payment id", "name": "id", "in": "query", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/server.paymentDTO"}},
                    "400": {"description": "Bad Request"},
                    "500": {"description": "Internal Server Error"}
                }
            }
        },
        "/payments/cancel": {
            "post": {
                "description": "Paid payments are refused, failed ones count as cancelled and pending ones are cancelled locally without voiding the charge.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["payments"],
                "summary": "Cancel a PIX payment",
                "parameters": [
                    {
                        "description": "Payment id",
                        "name": "request",
                        "in": "body",
                        "required": true,
                        "schema": {"$ref": "#/definitions/server.paymentIDRequest"}
                    }
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/server.cancelResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/server.cancelResponse"}},
                    "500": {"description": "Internal Server Error"}
                }
            }
        },
        "/payments/simulate": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["payments"],
                "summary": "Simulate a PIX payment (development only)",
                "parameters": [
                    {
                        "description": "Payment id",
                        "name": "request",
                        "in": "body",
                        "required": true,
                        "schema": {"$ref": "#/definitions/server.paymentIDRequest"}
                    }
                ],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/webhooks/pix": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["webhooks"],
                "summary": "Receive a PIX provider webhook",
                "parameters": [
                    {"type": "string", "description": "hex HMAC-SHA256 of the body", "name": "X-Webhook-Signature", "in": "header", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK"},
                    "400": {"description": "Bad Request"}
                }
            }
        },
        "/admin/events": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["admin"],
                "summary": "List received webhooks",
                "parameters": [
                    {"type": "integer", "description": "Page size (max 100)", "name": "limit", "in": "query"},
                    {"type": "integer", "description": "Offset", "name": "offset", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK"},
                    "401": {"description": "Unauthorized"}
                }
            }
        },
        "/admin/events/{paymentId}": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["admin"],
                "summary": "Webhooks received for one payment",
                "parameters": [
                    {"type": "string", "description": "Payment id", "name": "paymentId", "in": "path", "required": true}
                ],
                "responses": {"200": {"description": "OK"}}
            }
        }
    },
    "definitions": {
        "payment.Customer": {
            "type": "object",
            "properties": {
                "email": {"type": "string"},
                "name": {"type": "string"},
                "phone": {"type": "string"},
                "taxId": {"type": "string"}
            }
        },
        "server.createPaymentRequest": {
            "type": "object",
            "properties": {
                "amountCents": {"type": "integer"},
                "description": {"type": "string"},
                "expirySeconds": {"type": "integer"},
                "customer": {"$ref": "#/definitions/payment.Customer"},
                "metadata": {"type": "object", "additionalProperties": {"type": "string"}}
            }
        },
        "server.paymentDTO": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "amount": {"type": "integer"},
                "status": {"type": "string"},
                "devMode": {"type": "boolean"},
                "brCode": {"type": "string"},
                "brCodeBase64": {"type": "string"},
                "expiresAt": {"type": "string"},
                "createdAt": {"type": "string"},
                "updatedAt": {"type": "string"}
            }
        },
        "server.paymentIDRequest": {
            "type": "object",
            "required": ["id"],
            "properties": {"id": {"type": "string"}}
        },
        "server.cancelResponse": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "status": {"type": "string"},
                "cancelled": {"type": "boolean"},
                "cancellable": {"type": "boolean"},
                "message": {"type": "string"},
                "error": {"type": "string"}
            }
        }
    },
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it.
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "Wedding PIX payment backend",
	Description:      "Creates, checks and cancels PIX payments for the gift registry and receives provider webhooks.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
