// Package bootstrap turns environment configuration into the long-lived
// dependencies shared by cmd/api and cmd/worker: the logger, the queue
// storage selected by QUEUE_DRIVER, the mailer, the reminder scheduler and
// worker, and the vehicle classifier.
package bootstrap
