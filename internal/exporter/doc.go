// Package exporter writes built panels and their quality reports.
//
// A panel artifact has one line per (timestamp, country) in panel row
// order, the metric columns in panel column order, then the calendar
// features and the policy flag. Missing cells stay empty (CSV) or NULL
// (Parquet, PostgreSQL); nothing is filled in.
//
//	CSVWriter         CSV, optionally snappy-framed (.csv.sz)
//	ParquetWriter     Parquet through DuckDB COPY
//	PanelTableWriter  PostgreSQL table loaded with COPY FROM
//
// File artifacts are written to a temporary file and renamed into place.
package exporter
