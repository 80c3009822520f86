// Package sqldoc stores BSON documents as JSON rows in a SQL database, one table
// per partition. It backs the sqlite and postgres adapters.
//
// Rows are (id, doc). id is a UUIDv7 string so its byte order follows creation
// order; doc is the relaxed Extended JSON form of the document without its _id.
// Filters and sorts are translated to JSON path expressions of the dialect.
package sqldoc
