// Package watch notices edits to installed mods while the host runs.
//
// Mods are loaded once per process, so a change only produces a
// "restart required" notice. Hidden files and folders are ignored.
package watch
