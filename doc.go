// Package accounts provides the account and authentication layer for a
// multiplayer game backend: bcrypt credential hashing, persisted user
// accounts with a status lifecycle, RS256 JWT issuance and verification,
// and an authorization gate with server-side logout invalidation.
//
// User lifecycle:
//   - Users carry a UserStatus field that is persisted via Bun. Accounts
//     move between active, deactivated, and deleted; deleted is terminal
//     and nulls out the row's identifying fields while the row itself
//     survives so historical game records keep resolving.
//   - UserStateMachine centralizes the transition graph, timestamp
//     handling, and persistence. Invoke Transition with ActorRef metadata
//     whenever a caller or an admin moves an account.
//
// Tokens:
//   - TokenService signs RS256 JWTs with a kid header and verifies them
//     against a durable key registry, so tokens minted by one process
//     validate on another. Issue instants carry microsecond precision;
//     Auther rejects any token issued at or before the account's last
//     logout.
//
// Activity sinks:
//   - ActivitySink is a light-weight audit emitter used by the manager and
//     the state machine to describe lifecycle, login, and logout events.
//     Sinks run best-effort (errors are logged) so you can forward to a
//     database or queue without blocking authentication.
package accounts
