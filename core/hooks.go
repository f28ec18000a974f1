package core

// Lifecycle hooks, checked on the entity pointer passed to Insert, Update
// and Delete, and on every entity a mapper produces.
type BeforeInserter interface{ BeforeInsert() error }
type AfterInserter interface{ AfterInsert() error }
type BeforeUpdater interface{ BeforeUpdate() error }
type AfterUpdater interface{ AfterUpdate() error }
type BeforeDeleter interface{ BeforeDelete() error }
type AfterDeleter interface{ AfterDelete() error }
type AfterFinder interface{ AfterFind() error }
