// Package api is a typed client for the shop-demo backend HTTP API.
//
// Every JSON endpoint answers with the envelope {code, msg, data}; code 200
// is success. Failures are reported as *Error with one of three kinds:
//
//   - KindTransport: the request never produced a response
//   - KindMalformed: a 2xx response whose body is not the expected JSON
//   - KindRejected:  a non-2xx status or a non-200 envelope code
//
// The client never retries and sets no timeout unless one is configured;
// cancellation is through the request context.
package api
