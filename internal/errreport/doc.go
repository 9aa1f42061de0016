// Package errreport forwards item failures and error logs to Sentry.
package errreport
