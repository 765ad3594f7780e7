// Package notify turns pipeline signals into SNS notifications. Alert
// aggregates come from the Kinesis analytics stream and pipeline events come
// from S3 notifications and Glue job state changes.
package notify
