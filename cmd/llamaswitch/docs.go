package main

// General API documentation for swaggo. Run `make swagger-gen` to generate docs.
//
// @title           llamaswitch API
// @version         1.0
// @description     Supervisor for a single local llama-server backend with on-demand model switching.
//
// @contact.name   llamaswitch maintainers
//
// @license.name   MIT
// @license.url    https://opensource.org/licenses/MIT
//
// @BasePath  /
//
// @schemes http
