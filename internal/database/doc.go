// Package database exports scraped tables to SQLite, the way pandas'
// DataFrame.to_sql and read_sql do.
//
// FrameDB stores each frame as its own table of TEXT columns plus an
// integer "index" column, and keeps one row per saved run result in the
// scrapebook_results table. It uses modernc.org/sqlite, a CGO-free driver,
// so the database is a single portable file.
package database
