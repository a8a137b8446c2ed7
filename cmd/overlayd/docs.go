package main

// General API documentation for swaggo. The swagger UI is served when built
// with -tags=swagger.
//
// @title           overlayd API
// @version         1.0
// @description     Local HTTP surface of the selection overlay daemon.
//
// @BasePath  /
//
// @schemes http
