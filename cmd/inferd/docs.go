package main

// General API documentation for swaggo. Build with -tags=swagger to serve it.
//
// @title           inferd API
// @version         1.0
// @description     HTTP API for local text embedding and audio transcription.
//
// @BasePath  /
//
// @schemes http
