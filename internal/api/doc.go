// Package api exposes the booking confirmation hook, reminder inspection,
// vehicle classification and the operational endpoints over HTTP.
package api
