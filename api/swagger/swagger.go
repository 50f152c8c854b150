package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Substitute Request API",
        "description": "Faculty substitute-request lifecycle service",
        "version": "1.0.0"
    },
    "basePath": "/",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Auth", "description": "Registration and login"},
        {"name": "Users", "description": "Faculty directory and device tokens"},
        {"name": "Requests", "description": "Substitute request lifecycle"}
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
                    "503": {"description": "Degraded"}
                }
            }
        },
        "/api/auth/register": {
            "post": {
                "tags": ["Auth"],
                "summary": "Register a faculty account",
                "responses": {
                    "201": {"description": "Created"},
                    "400": {"description": "Validation error"},
                    "409": {"description": "Email already registered"}
                }
            }
        },
        "/api/auth/login": {
            "post": {
                "tags": ["Auth"],
                "summary": "Log in with faculty credentials",
                "responses": {
                    "200": {"description": "OK"},
                    "401": {"description": "Invalid credentials"}
                }
            }
        },
        "/api/users": {
            "get": {
                "tags": ["Users"],
                "summary": "List registered faculty",
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/api/users/me/push-token": {
            "put": {
                "tags": ["Users"],
                "summary": "Register an Expo push token",
                "responses": {
                    "204": {"description": "Registered"},
                    "400": {"description": "Validation error"}
                }
            }
        },
        "/api/requests": {
            "get": {
                "tags": ["Requests"],
                "summary": "List pending requests available to the caller",
                "responses": {
                    "200": {"description": "OK"}
                }
            },
            "post": {
                "tags": ["Requests"],
                "summary": "Create a substitute request",
                "responses": {
                    "201": {"description": "Created"},
                    "400": {"description": "Validation error"}
                }
            }
        },
        "/api/requests/{id}/accept": {
            "put": {
                "tags": ["Requests"],
                "summary": "Accept a pending request",
                "responses": {
                    "200": {"description": "Accepted"},
                    "400": {"description": "Cannot accept own request"},
                    "404": {"description": "Not found"},
                    "409": {"description": "Request is no longer available"}
                }
            }
        },
        "/api/requests/{id}/cancel": {
            "put": {
                "tags": ["Requests"],
                "summary": "Cancel a request the caller created",
                "responses": {
                    "200": {"description": "Cancelled"},
                    "404": {"description": "Not found or unauthorized"},
                    "409": {"description": "Already cancelled or completed"}
                }
            }
        },
        "/api/requests/{id}/complete": {
            "put": {
                "tags": ["Requests"],
                "summary": "Mark an accepted request as completed",
                "responses": {
                    "200": {"description": "Completed"},
                    "404": {"description": "Not found or unauthorized"},
                    "409": {"description": "Only accepted requests can be completed"}
                }
            }
        },
        "/api/requests/{id}": {
            "delete": {
                "tags": ["Requests"],
                "summary": "Delete a request the caller created",
                "responses": {
                    "204": {"description": "Deleted"},
                    "404": {"description": "Not found or unauthorized"}
                }
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it.
var SwaggerInfo = &swag.Spec{
	Version:          "1.0.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{"http"},
	Title:            "Substitute Request API",
	Description:      "Faculty substitute-request lifecycle service",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
