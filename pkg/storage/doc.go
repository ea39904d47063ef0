// Package storage keeps tables on disk so that join inputs and outputs do
// not have to fit in memory.
//
// A row file is a sequence of pages. Each page holds a run of consecutive
// rows in the tuple codec and is compressed with snappy on its own, so any
// page can be read without touching the rest of the file. The page directory
// (file offset, length and first row of every page) stays in memory and makes
// ReadBlock a binary search plus one positioned read.
//
// # Types
//
//   - [FileBuilder] appends rows and seals them into pages; Build returns the
//     readable [FileTable].
//   - [FileTable] implements table.Table over a sealed row file.
//   - [Store] owns a directory of row files, hands out builders through a
//     table.BuilderFactory and removes everything on Close.
package storage
