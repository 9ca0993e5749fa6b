// Package csrc collects QDII fund purchase limits from the CSRC fund
// disclosure site (eid.csrc.gov.cn).
//
// The sync walks three stages:
//   - Announcements: paged XBRL search for suspension notices (FC190)
//   - ParseDisclosure: extract company, start date and share classes from
//     each announcement's HTML view
//   - Normalize: validate codes and dates, clean names, derive currency and
//     share class, then upsert into fund_quota
//
// Announcement pages are retried with exponential backoff. Disclosures with
// no share class rows or a "-" start date are holiday notices and are
// skipped.
package csrc
