// Package triage is the business boundary for complaint triage of social
// posts. The Service deduplicates by post ID, runs complaint detection,
// issues a contact link for complaints, persists the result through a Store
// and notifies on urgent complaints.
package triage
