/*
Package params holds the typed parameter data carried into a newly activated scene.

A Record is a heterogeneous key/value bag tagged with a type name. The Store keeps one
Record per type name for the whole process lifetime: data merged for a transition
outlives the scene it was produced for, and is read by the scene that consumes it.
Records are created lazily and can be seeded from a registered initial data source.
*/
package params
