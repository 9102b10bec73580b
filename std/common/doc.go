// Package common holds the messages shared by all protocol families: the
// problem report and the acknowledgement.
package common
