// Package common provides core data structures and utilities shared across
// the Tessera RPC system. It defines fundamental types, configuration
// structures, and protocol elements used by other packages.
//
// Key Components:
//
//   - Message: Core data structure for all command-plane communication,
//     with a flexible structure that adapts to different operation types.
//     Includes factory methods for creating various request and response
//     messages.
//
//   - MessageType: Enumeration defining all supported operation types,
//     covering keyspace management, transactions, row operations, queries,
//     backup and control messages.
//
//   - ErrorKind / Error: The error taxonomy shared by client and server.
//     Errors cross the wire as a kind plus message and reconstruct into
//     values that match with errors.Is by kind.
//
//   - ServerConfig: Configuration for the server: endpoints, data
//     directory, sync behavior, timeouts and log level.
//
//   - ClientConfig: Configuration for client components, controlling
//     connection parameters, timeouts, and retry behavior.
//
//   - Logger: Structured logging (logrus) with one named logger per
//     subsystem and consistent formatting across the application.
package common
