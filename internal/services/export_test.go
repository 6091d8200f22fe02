package services

// NewSESLockoutNotifierWithClient exposes the client-injecting constructor to tests.
var NewSESLockoutNotifierWithClient = newSESLockoutNotifier
