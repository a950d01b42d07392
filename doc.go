// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.

/*
Package grandpa implements the GRANDPA finality gadget: the subsystem
that decides, under Byzantine fault tolerance assumptions, which
blocks in a Polkadot-family chain are irreversibly final.

# Architecture

The core is split into small, independently testable packages:

  - voter/         VoterSet: the weighted authority roster for a round
  - vote/          VoteWeight and VoteTracker: per-voter bookkeeping
  - votegraph/     the ancestry-compressed vote graph (GHOST + ancestor search)
  - gcrypto/       signed-payload construction and verification
  - round/         the per-round voting state machine
  - coord/         the round-chaining coordinator
  - justification/ ordered application of verified justifications
  - chain/         collaborator interfaces onto block storage
  - network/       wire types and the Transmitter collaborator
  - storage/       persisted round-state and authority-set keys
  - session/       rolling session-info cache shared with disputes
  - telemetry/     prometheus metrics wiring
  - config/        tunable parameters and environment presets

None of these packages perform networking, cryptography, or storage
themselves — those are consumed through the collaborator interfaces in
chain/, network/, gcrypto/, and storage/, mirroring how the rest of
this module's ecosystem treats transport and primitives as pluggable
dependencies.

# Data flow

Inbound vote messages are verified via gcrypto, routed by coord to the
matching round (current or immediately previous), and fed into the
round's VoteTracker and VoteGraph; inbound commit messages are verified
by coord and handed to the justification queue. After every mutation the
round recomputes its GHOST-prevote, estimate, and finalized block; once
a round is completable, coord persists it and starts the next one,
rooted at the newly finalized block.
*/
package grandpa
