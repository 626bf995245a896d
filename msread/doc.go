/*
Package msread provides types, constants and functions that have no other
dependencies and can be used by all packages within multiscale-read.
*/
package msread
