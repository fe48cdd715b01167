// Package database stores crawled posts in SQLite (via modernc.org/sqlite).
//
// The schema is created and upgraded by golang-migrate from the SQL files
// embedded under migrations/. Uniqueness of posts, tags and assets is
// enforced by the schema, so repeated crawls cannot duplicate them.
//
// Comments are stored with a nullable parent_id referencing another comment
// of the same post. The site's own comment ids are not stored.
package database
