// Package extract turns an article page into a post, a flat comment list and
// the list of images the article references.
//
// Comments are returned flat, each carrying the id of the comment it replies
// to as found in the markup. Rebuilding the thread is left to package thread.
package extract
