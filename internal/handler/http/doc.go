// Package http assembles the request pipeline of a miniservice from a sealed
// service registry.
//
// Every capability bound during composition maps onto a middleware or a
// route: CORS, forwarded headers, API versioning, authentication, response
// caching, documentation and the profiler are installed only when their
// capability is present. Request ids, access logging, metrics and tracing
// header capture are always on.
package http
