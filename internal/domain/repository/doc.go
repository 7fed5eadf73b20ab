// Package repository define las entidades y contratos del directorio de usuarios,
// independientes del driver (memory, postgres). Las implementaciones viven en
// internal/store/memory e internal/store/pg.
package repository
