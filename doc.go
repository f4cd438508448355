/*
Package chaindict maintains an append-only dictionary which maps arbitrary
byte-string values to dense uint32 ids, stored as a chain of immutable link
files on a write-once blob store, such as an object storage bucket.

Each link extends all previous links with a batch of new, globally unique
values. Ids are assigned in insertion order, starting at 0, without gaps.
Links are stored with delta and/or snapshot files: a delta file holds only
the entries introduced by its link, a snapshot holds all entries of the chain
up to and including its link. Files are never modified once written.

Readers materialize a dictionary from the latest snapshot plus the deltas of
all later links (see Resolver), or fetch only the entries introduced by a
single link from its delta (Resolver.DeltaOnly). Writers append links with an
Extender. The only coordination between concurrent writers is the store's
create-if-absent put of a link's delta file.

Data Structure Documentation

Keys

Link files are stored under a namespace, with zero-padded link indices:

    {namespace}/0000000000.delta
    {namespace}/0000000000.snapshot
    {namespace}/0000000001.delta
    ...

Link File

Delta and snapshot files share a single layout: a fixed header, a series of
entries in id order and a trailer. All integers are little-endian.

    +--------+---------+---------+---------+---------+
    | header | entry 1 |   ...   | entry n | trailer |
    +--------+---------+---------+---------+---------+

    Header:
    +-----------------+-------------------+---------------+-------------------+----------------------+-------------------+-----------------------+
    | magic (8 bytes) | version (2 bytes) | kind (1 byte) | reserved (1 byte) | link index (4 bytes) | base id (4 bytes) | entry count (4 bytes) |
    +-----------------+-------------------+---------------+-------------------+----------------------+-------------------+-----------------------+

    Trailer:
    +------------------------------------------+
    | CRC-32C of header and entries (4 bytes)  |
    +------------------------------------------+

The kind is 1 for deltas and 2 for snapshots. The base id is always the id of
the first entry introduced by the link. For deltas, the entry count is the
number of entries introduced by the link and entries are numbered from the
base id. For snapshots, the entry count is the total number of entries of the
chain up to the link and entries are numbered from 0.

Entry

    +----------------------------+-----------------+----------------+
    | value length (uvarint)     | value (varlen)  | id (4 bytes)   |
    +----------------------------+-----------------+----------------+

Value lengths must be minimally encoded, so every entry has exactly one
valid encoding.
*/
package chaindict
