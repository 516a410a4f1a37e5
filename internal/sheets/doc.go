// Package sheets logs confirmed bookings to a Google Sheets worksheet.
//
// The client authenticates as a service account, creates the worksheet on
// first use when it is missing, and appends one row per booking.
package sheets
