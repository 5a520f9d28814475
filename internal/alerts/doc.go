// Package alerts implements the rule evaluation engine and webhook delivery
// for wellsteer alerting. Rules are evaluated against steering snapshots and
// the connection state; webhooks are delivered to Teams, Slack, or generic
// HTTP targets.
package alerts
