package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RegisterSwagger registers minimal Swagger/OpenAPI endpoints.
// - GET /swagger/index.html  -> a small HTML page that loads the OpenAPI JSON
// - GET /swagger/doc.json    -> machine-readable OpenAPI JSON
func RegisterSwagger(rg *gin.Engine) {
	rg.GET("/swagger/index.html", func(c *gin.Context) {
		c.Header("Content-Type", "text/html; charset=utf-8")
		c.String(http.StatusOK, swaggerHTML)
	})

	rg.GET("/swagger/doc.json", func(c *gin.Context) {
		c.Data(http.StatusOK, "application/json; charset=utf-8", []byte(swaggerJSON))
	})
}

const swaggerHTML = `<!doctype html>
<html>
  <head>
    <meta charset="utf-8" />
    <title>stepcanvas — Swagger</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@4/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@4/swagger-ui-bundle.js"></script>
    <script>
      window.ui = SwaggerUIBundle({
        url: '/swagger/doc.json',
        dom_id: '#swagger-ui',
      })
    </script>
  </body>
</html>`

// Minimal OpenAPI document describing the main API surface.
const swaggerJSON = `{
  "openapi": "3.0.0",
  "info": { "title": "stepcanvas", "version": "v0.1.0" },
  "paths": {
    "/session": {
      "get": { "summary": "Get the logged-in user", "responses": { "200": { "description": "user" }, "403": { "description": "not logged in" } } }
    },
    "/users": {
      "get": { "summary": "List users", "responses": { "200": { "description": "users" } } },
      "post": { "summary": "Register a user", "requestBody": { "content": { "application/json": { "schema": {"type":"object","properties":{"username":{"type":"string"},"password":{"type":"string"}}}}}}, "responses": { "200": { "description": "user created" } } },
      "delete": { "summary": "Delete the logged-in user", "responses": { "200": { "description": "deleted" } } }
    },
    "/users/{username}": {
      "get": { "summary": "Get a user by username", "responses": { "200": { "description": "user" }, "404": { "description": "unknown username" } } }
    },
    "/login": {
      "post": { "summary": "Log in", "requestBody": { "content": { "application/json": { "schema": {"type":"object","properties":{"username":{"type":"string"},"password":{"type":"string"}}}}}}, "responses": { "200": { "description": "logged in" }, "403": { "description": "bad credentials" } } }
    },
    "/login/sso": {
      "post": { "summary": "Log in with an OIDC id token", "requestBody": { "content": { "application/json": { "schema": {"type":"object","properties":{"idToken":{"type":"string"}}}}}}, "responses": { "200": { "description": "logged in" } } }
    },
    "/logout": {
      "post": { "summary": "Log out", "responses": { "200": { "description": "logged out" } } }
    },
    "/posts": {
      "get": { "summary": "List posts, optionally by author username", "responses": { "200": { "description": "posts" } } },
      "post": { "summary": "Create a post", "responses": { "200": { "description": "post created" } } }
    },
    "/friends": {
      "get": { "summary": "List friends of the logged-in user", "responses": { "200": { "description": "usernames" } } }
    },
    "/friend/requests": {
      "get": { "summary": "List friend requests involving the logged-in user", "responses": { "200": { "description": "requests" } } }
    },
    "/images": {
      "post": { "summary": "Create an image tile", "responses": { "200": { "description": "image created" } } }
    },
    "/images/{id}": {
      "get": { "summary": "Get an image by id", "responses": { "200": { "description": "image" }, "404": { "description": "unknown id" } } },
      "patch": { "summary": "Update image fields", "responses": { "200": { "description": "updated" }, "404": { "description": "unknown id" } } }
    },
    "/images/author/{author}": {
      "get": { "summary": "List images by author id", "responses": { "200": { "description": "images" } } }
    },
    "/images/similar-words": {
      "post": { "summary": "Generate words similar to a prompt", "responses": { "200": { "description": "words" }, "502": { "description": "upstream failure" } } }
    },
    "/chatgpt": {
      "post": { "summary": "Generate a word list from input text", "responses": { "200": { "description": "words" }, "502": { "description": "upstream failure" } } }
    },
    "/health": { "get": { "summary": "Liveness check", "responses": { "200": { "description": "healthy" } } } },
    "/ready": { "get": { "summary": "Readiness check", "responses": { "200": { "description": "ready" }, "503": { "description": "not ready" } } } }
  }
}`
