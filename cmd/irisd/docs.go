package main

// General API documentation for swaggo. Run `make swagger-gen` to regenerate
// internal/apidocs.
//
// @title           irisd API
// @version         1.0
// @description     Iris species classifier served over HTTP.
//
// @contact.name   irisd maintainers
//
// @license.name   MIT
// @license.url    https://opensource.org/licenses/MIT
//
// @BasePath  /
//
// @schemes http
