// Package auth protects the mutating HTTP endpoints.
//
// There is one operator account. Its password is stored as an Argon2id PHC
// string in the configuration; a successful login yields a short-lived
// HS256 JWT. Repeated failures lock logins out for a few minutes.
package auth
