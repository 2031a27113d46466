// Package schema is the version-pinned description of the forScore library
// store: its entity tables, the shared entity-type registry, the join tables,
// and the handful of encodings (Core Data timestamps, musical key codes) the
// host application uses inside those tables.
//
// forScore's store is a Core Data SQLite file. Rows in every entity table
// share three columns: Z_PK (a synthetic key unique across the whole store,
// not just the table), Z_ENT (the entity-type code), and Z_OPT (an
// optimistic-lock counter the host bumps on every save). The Z_PRIMARYKEY
// table is the host's registry of entity types and their supertypes; a row's
// logical kind is resolved by walking that registry, never by table name
// alone.
//
// Nothing here talks to a live database except the key-allocation and
// bootstrap helpers; everything else is a fixed in-memory table resolved once
// at startup.
package schema
