/*
Package main is the findy-exchange CLI. findy-exchange implements the
connection, credential exchange and proof exchange protocols of Aries agents
as state machines which are persisted, polled and driven by the caller.

The records don't run by themselves. A record is created from an action or a
received message, the caller polls it with UpdateState and calls its actions
when the record is in a state which allows them. The prot package offers the
drivers which poll the records with a retry policy, in parallel or from a
scheduler.

# About the build-in CLI

The CLI runs the exchange scenarios between two agents in one process:

	findy-exchange demo --scenarios connection,proof
	findy-exchange demo --relay redis --redis-addr localhost:6379

Flags can be given in the environment with the FCLI_ prefix, or in a config
file given with --config.

# Sub-packages

findy-exchange is structured to the following sub-packages:

	agent    framework packages: records, storage, transport, wallet, ledger
	cmd      the cobra commands of the CLI
	cmds     the command objects the CLI executes
	protocol the connection, issuecredential and presentproof state machines
	std      a root package for Aries protocol messages
*/
package main
