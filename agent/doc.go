/*
Package agent is a package for the services the exchange records need. It
holds no code itself, the functionality is inside sub-packages.

The prot package is the most important one. Its Agent is the environment of
the records: the transport, the wallet, the ledger and the credential engine
they call, and the psm store where they are persisted. Other packages offer
those collaborators:

	pltype   message types of the protocol families
	psm      the persistent record store and its thread index
	ssi      the KMS wallet and the DID helpers
	storage  the encrypted bbolt storage behind the aries storage interfaces
	trans    the transport contract, the relays and the sealing pipe
	vc       the ledger contract and the reference credential engine
	vdr      the peer and key DID registry used by the packager
*/
package agent
