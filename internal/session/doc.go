// Package session manages the on-disk working areas of generation runs.
//
// Every run writes into its own session directory under the store root:
//
//	session_20250102_150405/
//	  articles/section_01.md ...
//	  images/section_01.png ...
//	  article_combined.md
//	  article_package_20250102_151022.zip
//	  cleanup_info.yaml
//
// ScheduleExpiry only records when a session may be deleted; deletion is
// done by SweepExpired, either at the end of a run or periodically by a
// Janitor.
package session
