// Package service runs the long-lived polling loop that feeds queued
// matching requests to the batch controller.
package service
