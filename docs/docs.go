// Package docs registers the OpenAPI spec served at /docs.
// Regenerate with: swag init -g internal/httpapi/router.go
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
        "/healthz": {
            "get": {
                "description": "Liveness check. No authentication required.",
                "produces": ["application/json"],
                "tags": ["health"],
                "summary": "Health check",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handler.healthResponse"}}
                }
            }
        },
        "/readyz": {
            "get": {
                "description": "Pings the store. No authentication required.",
                "produces": ["application/json"],
                "tags": ["health"],
                "summary": "Readiness check",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handler.healthResponse"}},
                    "503": {"description": "Service Unavailable", "schema": {"$ref": "#/definitions/handler.healthResponse"}}
                }
            }
        },
        "/api/roles": {
            "get": {
                "description": "The role catalog in catalog order.",
                "produces": ["application/json"],
                "tags": ["roles"],
                "summary": "List roles",
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/roles.Definition"}}}
                }
            }
        },
        "/api/roles/balance": {
            "post": {
                "description": "Returns crew, infiltrator, independent and total scores for a {role: count} map.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["roles"],
                "summary": "Score a role set",
                "parameters": [
                    {"description": "Role counts", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handler.BalanceRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handler.BalanceResponse"}},
                    "400": {"description": "Bad request or unknown role", "schema": {"type": "string"}}
                }
            }
        },
        "/api/roles/standard": {
            "get": {
                "description": "The role set the standard rules would deal for N players, before shuffling.",
                "produces": ["application/json"],
                "tags": ["roles"],
                "summary": "Standard assignment",
                "parameters": [
                    {"type": "integer", "description": "Player count", "name": "players", "in": "query", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/games.Assignment"}},
                    "400": {"description": "Invalid player count", "schema": {"type": "string"}}
                }
            }
        },
        "/api/games": {
            "post": {
                "description": "Create a new game lobby. The requester becomes the moderator and receives a token.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["games"],
                "summary": "Create game",
                "parameters": [
                    {"description": "Request body", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/store.CreateGameRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/store.CreateGameResponse"}},
                    "400": {"description": "Bad request (invalid display_name, password length, or body)", "schema": {"type": "string"}},
                    "500": {"description": "Server error", "schema": {"type": "string"}}
                }
            }
        },
        "/api/games/{code}": {
            "get": {
                "description": "Lobby view: game status and seated players. Roles are never included.",
                "produces": ["application/json"],
                "tags": ["games"],
                "summary": "Get game",
                "parameters": [
                    {"type": "string", "description": "Game code", "name": "code", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handler.GameResponse"}},
                    "400": {"description": "Invalid game code", "schema": {"type": "string"}},
                    "404": {"description": "Game not found", "schema": {"type": "string"}}
                }
            }
        },
        "/api/games/{code}/join": {
            "post": {
                "description": "Take the next free seat of a waiting game and receive a player token.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["games"],
                "summary": "Join game",
                "parameters": [
                    {"type": "string", "description": "Game code", "name": "code", "in": "path", "required": true},
                    {"description": "Request body (code in path, not body)", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/store.JoinGameRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/store.JoinGameResponse"}},
                    "401": {"description": "Invalid password", "schema": {"type": "string"}},
                    "404": {"description": "Game not found", "schema": {"type": "string"}},
                    "409": {"description": "Game already started", "schema": {"type": "string"}}
                }
            }
        },
        "/api/games/{code}/state": {
            "get": {
                "security": [{"BearerAuth": []}],
                "description": "The caller's view of the game. Hidden roles are masked for everyone but the moderator.",
                "produces": ["application/json"],
                "tags": ["games"],
                "summary": "Get state",
                "parameters": [
                    {"type": "string", "description": "Game code", "name": "code", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object", "additionalProperties": true}},
                    "401": {"description": "Unauthorized", "schema": {"type": "string"}}
                }
            }
        },
        "/api/games/{code}/events": {
            "get": {
                "security": [{"BearerAuth": []}],
                "description": "The game's event log, oldest first. Moderator only until the game has finished.",
                "produces": ["application/json"],
                "tags": ["games"],
                "summary": "Event log",
                "parameters": [
                    {"type": "string", "description": "Game code", "name": "code", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/store.GameEvent"}}},
                    "403": {"description": "Moderator only while the game runs", "schema": {"type": "string"}}
                }
            }
        },
        "/api/games/{code}/moves": {
            "post": {
                "security": [{"BearerAuth": []}],
                "description": "Apply a vote or action as the token's player. Results are also pushed to connected sockets.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["games"],
                "summary": "Apply move",
                "parameters": [
                    {"type": "string", "description": "Game code", "name": "code", "in": "path", "required": true},
                    {"description": "Move", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handler.MoveRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handler.MoveResponse"}},
                    "400": {"description": "Invalid move", "schema": {"type": "string"}},
                    "401": {"description": "Unauthorized", "schema": {"type": "string"}},
                    "403": {"description": "Not allowed for this player", "schema": {"type": "string"}},
                    "409": {"description": "Game finished or action already submitted", "schema": {"type": "string"}}
                }
            }
        }
    },
    "definitions": {
        "handler.healthResponse": {
            "type": "object",
            "properties": {"status": {"type": "string"}, "service": {"type": "string"}, "store": {"type": "string"}}
        },
        "handler.BalanceRequest": {
            "type": "object",
            "properties": {"roles": {"type": "object", "additionalProperties": {"type": "integer"}}}
        },
        "handler.BalanceResponse": {
            "type": "object",
            "properties": {
                "balance": {"$ref": "#/definitions/roles.Score"},
                "is_balanced": {"type": "boolean"},
                "player_count": {"type": "integer"}
            }
        },
        "handler.GameResponse": {
            "type": "object",
            "properties": {
                "game": {"$ref": "#/definitions/store.Game"},
                "players": {"type": "array", "items": {"$ref": "#/definitions/store.GamePlayer"}}
            }
        },
        "handler.MoveRequest": {
            "type": "object",
            "properties": {
                "type": {"type": "string", "enum": ["vote", "action"]},
                "payload": {"type": "object", "additionalProperties": true}
            }
        },
        "handler.MoveResponse": {
            "type": "object",
            "properties": {
                "state": {"type": "object", "additionalProperties": true},
                "events": {"type": "array", "items": {"$ref": "#/definitions/games.BroadcastEvent"}}
            }
        },
        "games.BroadcastEvent": {
            "type": "object",
            "properties": {"event": {"type": "string"}, "payload": {"type": "object", "additionalProperties": true}}
        },
        "games.Slot": {
            "type": "object",
            "properties": {"role": {"type": "string"}, "faction": {"type": "string"}, "grade": {"type": "integer"}}
        },
        "games.Assignment": {
            "type": "object",
            "properties": {
                "roles": {"type": "array", "items": {"$ref": "#/definitions/games.Slot"}},
                "balance": {"$ref": "#/definitions/roles.Score"},
                "is_balanced": {"type": "boolean"},
                "player_count": {"type": "integer"}
            }
        },
        "roles.Definition": {
            "type": "object",
            "properties": {
                "key": {"type": "string"},
                "name": {"type": "string"},
                "faction": {"type": "string", "enum": ["crew", "infiltrator", "independent"]},
                "grade": {"type": "integer"},
                "description": {"type": "string"},
                "actions": {"type": "array", "items": {"type": "string"}}
            }
        },
        "roles.Score": {
            "type": "object",
            "properties": {
                "crew_score": {"type": "integer"},
                "infiltrator_score": {"type": "integer"},
                "independent_score": {"type": "integer"},
                "total_score": {"type": "integer"}
            }
        },
        "store.Game": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "code": {"type": "string"},
                "status": {"type": "string"},
                "config": {"type": "object", "additionalProperties": true},
                "created_at": {"type": "string"},
                "ended_at": {"type": "string"}
            }
        },
        "store.GamePlayer": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "game_id": {"type": "string"},
                "display_name": {"type": "string"},
                "seat": {"type": "integer"},
                "is_moderator": {"type": "boolean"},
                "joined_at": {"type": "string"}
            }
        },
        "store.GameEvent": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "game_id": {"type": "string"},
                "player_id": {"type": "string"},
                "type": {"type": "string"},
                "payload": {"type": "object", "additionalProperties": true},
                "created_at": {"type": "string"}
            }
        },
        "store.CreateGameRequest": {
            "type": "object",
            "properties": {
                "display_name": {"type": "string"},
                "password": {"type": "string"},
                "config": {"type": "object", "additionalProperties": true}
            }
        },
        "store.CreateGameResponse": {
            "type": "object",
            "properties": {
                "game": {"$ref": "#/definitions/store.Game"},
                "moderator": {"$ref": "#/definitions/store.GamePlayer"},
                "token": {"type": "string"},
                "expires_at": {"type": "string"}
            }
        },
        "store.JoinGameRequest": {
            "type": "object",
            "properties": {"display_name": {"type": "string"}, "password": {"type": "string"}}
        },
        "store.JoinGameResponse": {
            "type": "object",
            "properties": {
                "game": {"$ref": "#/definitions/store.Game"},
                "player": {"$ref": "#/definitions/store.GamePlayer"},
                "token": {"type": "string"},
                "expires_at": {"type": "string"}
            }
        }
    },
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "Void Threat API",
	Description:      "Lobby, moves and role balance for Void Threat games.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
