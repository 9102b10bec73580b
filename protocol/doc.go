/*
Package protocol holds the exchange state machines. The connection package
establishes the pairwise channel, issuecredential and presentproof run their
exchanges over it. The message models are in the std package and the shared
record, error and polling contract is in agent/prot.

Every state machine is driven the same way: an action call moves it from a
local decision, UpdateState applies the messages of its thread from the
mailbox and prot.Poll repeats UpdateState until the record is terminal.
*/
package protocol
