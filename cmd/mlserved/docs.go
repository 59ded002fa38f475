package main

// General API documentation for swaggo. Run `swag init` to regenerate docs.
//
// @title           mlserved API
// @version         1.0
// @description     HTTP API for classifier lifecycle management and serving.
//
// @contact.name   mlserved maintainers
//
// @BasePath  /
//
// @schemes http
