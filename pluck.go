// Package pluck collects a target URL and a natural-language prompt, sends
// them to a hosted extraction service, and presents the structured response.
//
// This package contains domain types and interfaces following Ben Johnson's
// Standard Package Layout. Implementations live in subdirectories named
// after their primary dependency (e.g., sqlite/, firecrawl/, zerolog/).
package pluck
