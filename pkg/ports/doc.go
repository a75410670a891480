/*
Package ports defines the driven ports (interfaces) for teller.

These interfaces decouple the assistants from external implementations, so
the same workflows run against in-memory fakes in tests and real services in
production.

# Key Interfaces

  - AccountStore: persists customer accounts (memory, file, Redis).
  - DistributedLocker: serializes account mutations across replicas.
  - LanguageModel: the text completion collaborator.
  - PolicySearcher: the web search collaborator.
*/
package ports
