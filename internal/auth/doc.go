// Package auth implements Google sign-in, signed session tokens and the
// encrypted credential store that supplies calendar access tokens to the
// availability service.
package auth
